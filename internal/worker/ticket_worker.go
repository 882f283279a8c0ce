package worker

// ticket_worker.go
// Processes receipt jobs from QueueTicket: loads the committed sale and
// renders its ticket PDF. Runs after commit, so a failure here never affects
// the sale itself.

import (
	"context"
	"encoding/json"
	"fmt"

	"cajapos/internal/infra"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const JobTicket = "ticket"

// TicketJobPayload is the job envelope sent to QueueTicket.
type TicketJobPayload struct {
	VentaID string `json:"venta_id"`
}

type TicketWorker struct {
	db             *gorm.DB
	ventaRepo      repository.VentaRepository
	articuloRepo   repository.ArticuloRepository
	pdfStoragePath string
}

func NewTicketWorker(db *gorm.DB, ventaRepo repository.VentaRepository, articuloRepo repository.ArticuloRepository, pdfStoragePath string) *TicketWorker {
	return &TicketWorker{db: db, ventaRepo: ventaRepo, articuloRepo: articuloRepo, pdfStoragePath: pdfStoragePath}
}

// Process generates the PDF ticket and returns its path.
func (w *TicketWorker) Process(ctx context.Context, raw json.RawMessage) (string, error) {
	var payload TicketJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("ticket_worker: invalid payload: %w", err)
	}
	ventaID, err := uuid.Parse(payload.VentaID)
	if err != nil {
		return "", fmt.Errorf("ticket_worker: invalid venta_id %q", payload.VentaID)
	}

	venta, err := w.ventaRepo.FindByID(ctx, ventaID)
	if err != nil {
		return "", fmt.Errorf("ticket_worker: load venta %s: %w", ventaID, err)
	}

	ids := make([]uuid.UUID, 0, len(venta.Items))
	for _, it := range venta.Items {
		ids = append(ids, it.ArticuloID)
	}
	articulos, err := w.articuloRepo.FindByIDsTx(w.db.WithContext(ctx), ids)
	if err != nil {
		return "", fmt.Errorf("ticket_worker: load articulos: %w", err)
	}
	nombres := make(map[uuid.UUID]string, len(articulos))
	for id, a := range articulos {
		nombres[id] = a.Nombre
	}

	path, err := infra.GenerateTicketPDF(venta, nombres, w.pdfStoragePath)
	if err != nil {
		return "", fmt.Errorf("ticket_worker: %w", err)
	}
	log.Info().
		Str("venta_id", ventaID.String()).
		Str("serie", venta.Serie).
		Int64("numero", venta.NumeroFactura).
		Str("pdf", path).
		Msg("ticket_worker: PDF generated")
	return path, nil
}

// Handle adapts Process to the pool's Handler signature.
func (w *TicketWorker) Handle(ctx context.Context, raw json.RawMessage) error {
	_, err := w.Process(ctx, raw)
	return err
}
