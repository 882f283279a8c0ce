package worker

// cierre_worker.go
// Processes closing-report jobs from QueueCierre: renders the A4 report and,
// when SMTP and a recipient are configured, mails it as an attachment.

import (
	"context"
	"encoding/json"
	"fmt"

	"cajapos/internal/infra"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const JobCierre = "cierre"

// CierreJobPayload is the job envelope sent to QueueCierre.
type CierreJobPayload struct {
	CierreID string `json:"cierre_id"`
}

// Mailer is the subset of infra.Mailer the worker needs.
type Mailer interface {
	Enabled() bool
	Send(to, subject, body, pdfPath string) error
}

type CierreWorker struct {
	cierreRepo     repository.CierreRepository
	mailer         Mailer
	destinatario   string
	pdfStoragePath string
}

func NewCierreWorker(cierreRepo repository.CierreRepository, mailer Mailer, destinatario, pdfStoragePath string) *CierreWorker {
	return &CierreWorker{
		cierreRepo:     cierreRepo,
		mailer:         mailer,
		destinatario:   destinatario,
		pdfStoragePath: pdfStoragePath,
	}
}

func (w *CierreWorker) Handle(ctx context.Context, raw json.RawMessage) error {
	var payload CierreJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("cierre_worker: invalid payload: %w", err)
	}
	cierreID, err := uuid.Parse(payload.CierreID)
	if err != nil {
		return fmt.Errorf("cierre_worker: invalid cierre_id %q", payload.CierreID)
	}

	cierre, err := w.cierreRepo.FindByID(ctx, cierreID)
	if err != nil {
		return fmt.Errorf("cierre_worker: load cierre %s: %w", cierreID, err)
	}

	path, err := infra.GenerateCierrePDF(cierre, w.pdfStoragePath)
	if err != nil {
		return fmt.Errorf("cierre_worker: %w", err)
	}
	log.Info().Str("cierre_id", cierreID.String()).Str("pdf", path).Msg("cierre_worker: PDF generated")

	if w.mailer == nil || !w.mailer.Enabled() || w.destinatario == "" {
		return nil
	}
	subject := fmt.Sprintf("Cierre de caja %s", cierre.Fecha.Format("2006-01-02 15:04"))
	body := fmt.Sprintf("Esperado: %s\nContado: %s\nDiferencia: %s (%s)\n",
		cierre.EfectivoEsperado.StringFixed(2),
		cierre.EfectivoContado.StringFixed(2),
		cierre.Diferencia.StringFixed(2),
		cierre.Clasificacion,
	)
	if err := w.mailer.Send(w.destinatario, subject, body, path); err != nil {
		return fmt.Errorf("cierre_worker: send email: %w", err)
	}
	log.Info().Str("to", w.destinatario).Str("cierre_id", cierreID.String()).Msg("cierre_worker: report sent")
	return nil
}
