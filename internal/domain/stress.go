package domain

// ============================================================
// Stress self-report & derived analytics
// ============================================================

// StressTrigger is an enumerated cause reported at check-out.
type StressTrigger string

const (
	TriggerSevereCases   StressTrigger = "CASOS_GRAVES"
	TriggerReducedTeam   StressTrigger = "EQUIPE_REDUZIDA"
	TriggerOvercrowding  StressTrigger = "LOTACAO"
	TriggerMissedBreak   StressTrigger = "FALTA_PAUSA"
	TriggerSleep         StressTrigger = "SONO"
	TriggerTeamConflict  StressTrigger = "CONFLITO_EQUIPE"
	TriggerLateHandover  StressTrigger = "ATRASO_PASSAGEM"
	TriggerPhysicalPain  StressTrigger = "DOR_FISICA"
	TriggerSystemFailure StressTrigger = "FALHA_SISTEMA"
	TriggerOther         StressTrigger = "OUTRO"
)

const (
	MaxStressTriggers     = 6
	MaxFreeTextNoteLength = 500
)

// TriggerWeights holds the stress points each trigger adds.
var TriggerWeights = map[StressTrigger]int{
	TriggerSevereCases:   7,
	TriggerReducedTeam:   6,
	TriggerOvercrowding:  6,
	TriggerMissedBreak:   5,
	TriggerSleep:         5,
	TriggerTeamConflict:  4,
	TriggerLateHandover:  4,
	TriggerPhysicalPain:  4,
	TriggerSystemFailure: 3,
	TriggerOther:         2,
}

// StressSelfReport is supplied once, at check-out.
type StressSelfReport struct {
	Level        int             `json:"level" validate:"min=1,max=5"`
	EnergyLevel  int             `json:"energyLevel" validate:"min=1,max=5"`
	SupportLevel int             `json:"supportLevel" validate:"min=1,max=5"`
	Triggers     []StressTrigger `json:"triggers"`
	Note         string          `json:"note,omitempty"`
}

// RiskLevel is a band derived from a numeric score via fixed thresholds.
type RiskLevel string

const (
	RiskLow      RiskLevel = "BAIXO"
	RiskModerate RiskLevel = "MODERADO"
	RiskHigh     RiskLevel = "ALTO"
	RiskCritical RiskLevel = "CRITICO"
)

// IsHigh reports ALTO or CRITICO.
func (r RiskLevel) IsHigh() bool {
	return r == RiskHigh || r == RiskCritical
}

// Stress factor names, in breakdown order.
const (
	FactorSelfReport = "selfReport"
	FactorLateness   = "lateness"
	FactorOvertime   = "overtime"
	FactorWorkload   = "workload"
	FactorNightShift = "nightShift"
	FactorTriggers   = "triggers"
	FactorLowEnergy  = "lowEnergy"
	FactorLowSupport = "lowSupport"
	FactorShortRest  = "shortRest"
)

// StressBreakdown holds each capped sub-score.
type StressBreakdown struct {
	SelfReport int `json:"selfReport"`
	Lateness   int `json:"lateness"`
	Overtime   int `json:"overtime"`
	Workload   int `json:"workload"`
	NightShift int `json:"nightShift"`
	Triggers   int `json:"triggers"`
	LowEnergy  int `json:"lowEnergy"`
	LowSupport int `json:"lowSupport"`
	ShortRest  int `json:"shortRest"`
}

// Drivers lists the sub-scores in breakdown order.
func (b StressBreakdown) Drivers() []StressDriver {
	return []StressDriver{
		{Factor: FactorSelfReport, Points: b.SelfReport},
		{Factor: FactorLateness, Points: b.Lateness},
		{Factor: FactorOvertime, Points: b.Overtime},
		{Factor: FactorWorkload, Points: b.Workload},
		{Factor: FactorNightShift, Points: b.NightShift},
		{Factor: FactorTriggers, Points: b.Triggers},
		{Factor: FactorLowEnergy, Points: b.LowEnergy},
		{Factor: FactorLowSupport, Points: b.LowSupport},
		{Factor: FactorShortRest, Points: b.ShortRest},
	}
}

// Total sums every sub-score.
func (b StressBreakdown) Total() int {
	total := 0
	for _, d := range b.Drivers() {
		total += d.Points
	}
	return total
}

// StressFlags are boolean alerts raised by a check-out.
type StressFlags struct {
	AtrasoRelevante      bool `json:"atraso_relevante"`
	HoraExtraAlta        bool `json:"hora_extra_alta"`
	AutopercepcaoAlta    bool `json:"autopercepcao_alta"`
	BaixoSuporte         bool `json:"baixo_suporte"`
	BaixaEnergia         bool `json:"baixa_energia"`
	ExposicaoCasosGraves bool `json:"exposicao_casos_graves"`
	JanelaDescansoCurta  bool `json:"janela_descanso_curta"`
	RiscoCritico         bool `json:"risco_critico"`
}

// StressDriver is one named contribution to a stress score.
type StressDriver struct {
	Factor string `json:"factor"`
	Points int    `json:"points"`
}

// StressAnalytics is fully derived from the record, the self-report and
// the professional's history. Never hand-edited.
type StressAnalytics struct {
	Score                      int             `json:"score"`
	RiskLevel                  RiskLevel       `json:"riskLevel"`
	Breakdown                  StressBreakdown `json:"breakdown"`
	Flags                      StressFlags     `json:"flags"`
	RecoveryMinutesRecommended int             `json:"recoveryMinutesRecommended"`
	DominantDrivers            []StressDriver  `json:"dominantDrivers"`
	RestHoursSincePrevious     *float64        `json:"restHoursSincePrevious,omitempty"`
}

// InstitutionShiftEvaluation rates the institution on six 1..5 dimensions.
type InstitutionShiftEvaluation struct {
	Organization    int    `json:"organization" validate:"min=1,max=5"`
	PatientVolume   int    `json:"patientVolume" validate:"min=1,max=5"`
	Safety          int    `json:"safety" validate:"min=1,max=5"`
	Structure       int    `json:"structure" validate:"min=1,max=5"`
	PaymentOnTime   int    `json:"paymentOnTime" validate:"min=1,max=5"`
	TeamEnvironment int    `json:"teamEnvironment" validate:"min=1,max=5"`
	Note            string `json:"note,omitempty"`
}

// Average returns the mean of the six dimensions.
func (e InstitutionShiftEvaluation) Average() float64 {
	sum := e.Organization + e.PatientVolume + e.Safety + e.Structure + e.PaymentOnTime + e.TeamEnvironment
	return float64(sum) / 6
}

// StressHistoryEntry is one check-out in a professional's own stress timeline.
type StressHistoryEntry struct {
	ShiftID    string          `json:"shiftId"`
	ShiftDate  string          `json:"shiftDate"`
	SectorName string          `json:"sectorName"`
	CheckOutAt string          `json:"checkOutAt"`
	Level      int             `json:"level"`
	Analytics  StressAnalytics `json:"analytics"`
}
