package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"sort"
	"strconv"

	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
)

type ReportService struct {
	dealRepo  repository.DealRepository
	schedules *PaymentScheduleService
	agencyID  string
}

func NewReportService(dealRepo repository.DealRepository, schedules *PaymentScheduleService, agencyID string) *ReportService {
	return &ReportService{dealRepo: dealRepo, schedules: schedules, agencyID: agencyID}
}

// GenerateCommissionsCSV writes one row per split entry of the deals accepted
// between from and to. Zero dates leave that side of the range open.
func (s *ReportService) GenerateCommissionsCSV(ctx context.Context, from, to models.Date) (*bytes.Buffer, error) {
	deals, err := s.dealRepo.List(ctx, func(d *models.Deal) bool {
		if !from.IsZero() && d.AcceptedDate.Before(from) {
			return false
		}
		if !to.IsZero() && d.AcceptedDate.After(to) {
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].AcceptedDate.Before(deals[j].AcceptedDate)
	})

	b := &bytes.Buffer{}
	w := csv.NewWriter(b)

	header := []string{"Deal ID", "Property ID", "Accepted", "Match", "Agreed Price", "Currency",
		"Entry ID", "Party", "Payee", "Percentage", "Amount", "Original Amount", "Status"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, d := range deals {
		for _, e := range d.Commission.Entries {
			original := ""
			if e.OverrideAmount != nil {
				original = e.OverrideAmount.StringFixed(2)
			}
			record := []string{
				d.ID,
				d.PropertyID,
				d.AcceptedDate.String(),
				string(d.MatchKind),
				d.AgreedPrice.StringFixed(2),
				d.Currency,
				e.ID,
				string(e.Party.Kind),
				e.Party.Payee(s.agencyID),
				e.Percentage.String(),
				e.Amount.StringFixed(2),
				original,
				string(e.Status),
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateOverdueInstalmentsCSV lists every instalment overdue today on an active deal
func (s *ReportService) GenerateOverdueInstalmentsCSV(ctx context.Context) (*bytes.Buffer, error) {
	overdue, err := s.schedules.ListOverdue(ctx, s.schedules.Today())
	if err != nil {
		return nil, err
	}

	b := &bytes.Buffer{}
	w := csv.NewWriter(b)

	header := []string{"Schedule ID", "Deal ID", "Instalment", "Due Date", "Days Overdue", "Amount", "Remaining"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, o := range overdue {
		record := []string{
			o.ScheduleID,
			o.DealID,
			strconv.Itoa(o.Instalment.Number),
			o.Instalment.DueDate.String(),
			strconv.Itoa(o.DaysOverdue),
			o.Instalment.Amount.StringFixed(2),
			o.Remaining.StringFixed(2),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return b, nil
}
