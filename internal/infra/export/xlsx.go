// Package export renders manager analytics as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"

	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the MIME type of the workbook.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	sheetTotals   = "Resumo"
	sheetLate     = "Atrasos"
	sheetStress   = "Estresse"
	sheetTimeline = "Linha do tempo"
	sheetHighRisk = "Maior risco"
)

// WriteManagerAnalytics writes the snapshot as an XLSX workbook with one
// sheet per section.
func WriteManagerAnalytics(w io.Writer, a *domain.AttendanceManagerAnalytics) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetTotals); err != nil {
		return err
	}

	t := a.Totals
	totals := [][]any{
		{"Organização", a.OrganizationID},
		{"Gerado em", a.GeneratedAt.Format("2006-01-02 15:04")},
		{"Registros", t.Records},
		{"Cancelamentos", t.Cancellations},
		{"Check-ins", t.CheckedIn},
		{"Check-outs", t.CheckedOut},
		{"Abandonos", t.Abandonments},
		{"Taxa de presença (%)", t.AttendanceRate},
		{"Taxa de check-in (%)", t.CheckInRate},
		{"Taxa de check-out (%)", t.CheckoutRate},
		{"Pontualidade (%)", t.OnTimeRate},
		{"Abandono (%)", t.AbandonmentRate},
		{"Cancelamento de última hora (%)", t.LastMinuteCancellationRate},
		{"Atraso médio (min)", t.AvgLateMinutes},
		{"Hora extra média (min)", t.AvgOvertimeMinutes},
		{"Distância média no check-in (m)", t.AvgCheckInDistanceMeters},
		{"Estresse médio (score)", t.AvgStressScore},
		{"Estresse médio (autorrelato)", t.AvgStressLevel},
		{"Risco alto (%)", t.HighRiskRate},
		{"BAIXO", a.RiskDistribution.Baixo},
		{"MODERADO", a.RiskDistribution.Moderado},
		{"ALTO", a.RiskDistribution.Alto},
		{"CRITICO", a.RiskDistribution.Critico},
	}
	if err := writeRows(f, sheetTotals, nil, totals); err != nil {
		return err
	}

	late := make([][]any, 0, len(a.LateRanking))
	for _, e := range a.LateRanking {
		late = append(late, []any{e.ProfessionalName, e.Specialty, e.Records, e.LateCount, e.LateRate, e.AvgLateMinutes, e.MaxLateMinutes, e.AvgCheckInDistanceMeters})
	}
	if err := writeSheet(f, sheetLate,
		[]any{"Profissional", "Especialidade", "Plantões", "Atrasos", "Taxa de atraso (%)", "Atraso médio (min)", "Atraso máximo (min)", "Distância média (m)"},
		late); err != nil {
		return err
	}

	stress := make([][]any, 0, len(a.StressRanking))
	for _, e := range a.StressRanking {
		triggers := make([]string, len(e.TopTriggers))
		for i, t := range e.TopTriggers {
			triggers[i] = string(t)
		}
		stress = append(stress, []any{e.ProfessionalName, e.Specialty, e.Checkouts, e.AvgStressLevel, e.AvgStressScore, e.HighRiskCount, e.CriticalCount, strings.Join(triggers, ", ")})
	}
	if err := writeSheet(f, sheetStress,
		[]any{"Profissional", "Especialidade", "Check-outs", "Autorrelato médio", "Score médio", "Risco alto", "Crítico", "Gatilhos recorrentes"},
		stress); err != nil {
		return err
	}

	timeline := make([][]any, 0, len(a.StressTimeline))
	for _, b := range a.StressTimeline {
		timeline = append(timeline, []any{b.ShiftDate, b.Checkouts, b.AvgStressScore, b.AvgStressLevel, b.HighRiskCount})
	}
	if err := writeSheet(f, sheetTimeline,
		[]any{"Data", "Check-outs", "Score médio", "Autorrelato médio", "Risco alto"},
		timeline); err != nil {
		return err
	}

	risky := make([][]any, 0, len(a.HighestRiskCheckouts))
	for _, c := range a.HighestRiskCheckouts {
		drivers := make([]string, len(c.DominantDrivers))
		for i, d := range c.DominantDrivers {
			drivers[i] = fmt.Sprintf("%s (%d)", d.Factor, d.Points)
		}
		risky = append(risky, []any{c.ProfessionalName, c.SectorName, c.ShiftDate, c.Score, string(c.RiskLevel), strings.Join(drivers, ", ")})
	}
	if err := writeSheet(f, sheetHighRisk,
		[]any{"Profissional", "Setor", "Data", "Score", "Nível", "Fatores dominantes"},
		risky); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	return writeRows(f, sheet, header, rows)
}

func writeRows(f *excelize.File, sheet string, header []any, rows [][]any) error {
	row := 1
	if header != nil {
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return err
		}
		row++
	}
	for _, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return err
		}
		row++
	}
	return nil
}
