package service

import (
	"context"
	"errors"
	"fmt"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// NumeracionService is the invoice numbering authority. The counter lives only
// in the numeraciones row; nothing is cached in memory.
type NumeracionService interface {
	// IssueNext issues the next number in its own short transaction.
	IssueNext(ctx context.Context, serie string) (int64, error)
	// IssueNextTx issues inside the caller's transaction, so a rollback
	// returns the number.
	IssueNextTx(tx *gorm.DB, serie string) (int64, error)

	Crear(ctx context.Context, req dto.CrearNumeracionRequest) (*dto.NumeracionResponse, error)
	Desactivar(ctx context.Context, serie string) error
	Listar(ctx context.Context) ([]dto.NumeracionResponse, error)
}

type numeracionService struct {
	tx   *repository.TxRunner
	repo repository.NumeracionRepository
}

func NewNumeracionService(tx *repository.TxRunner, repo repository.NumeracionRepository) NumeracionService {
	return &numeracionService{tx: tx, repo: repo}
}

func (s *numeracionService) IssueNext(ctx context.Context, serie string) (int64, error) {
	var numero int64
	err := s.tx.Run(ctx, "issue_next", func(tx *gorm.DB) error {
		var err error
		numero, err = s.IssueNextTx(tx, serie)
		return err
	})
	return numero, err
}

// IssueNextTx increments and reads back in the same transaction. The UPDATE
// holds the series row lock until commit, so no other caller can observe the
// same correlativo.
func (s *numeracionService) IssueNextTx(tx *gorm.DB, serie string) (int64, error) {
	n, err := s.repo.IncrementTx(tx, serie)
	if err != nil {
		return 0, fmt.Errorf("incrementar serie %s: %w", serie, err)
	}
	if n == 0 {
		num, err := s.repo.FindTx(tx, serie)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apierror.SeriesNotFound(serie)
		}
		if err != nil {
			return 0, fmt.Errorf("leer serie %s: %w", serie, err)
		}
		if !num.Activo {
			return 0, apierror.SeriesInactive(serie)
		}
		return 0, apierror.Inconsistent("la serie activa no se pudo incrementar").With("serie", serie)
	}

	num, err := s.repo.FindTx(tx, serie)
	if err != nil {
		return 0, fmt.Errorf("leer serie %s: %w", serie, err)
	}
	return num.Correlativo, nil
}

func (s *numeracionService) Crear(ctx context.Context, req dto.CrearNumeracionRequest) (*dto.NumeracionResponse, error) {
	if req.Serie == "" {
		return nil, apierror.ValidationFields(map[string]string{"serie": "requerida"})
	}
	if req.CorrelativoInicial < 0 {
		return nil, apierror.ValidationFields(map[string]string{"correlativo_inicial": "no puede ser negativo"})
	}
	n := &model.Numeracion{
		Serie:       req.Serie,
		Descripcion: req.Descripcion,
		Correlativo: req.CorrelativoInicial,
		Activo:      true,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierror.Conflict("la serie ya existe", err).With("serie", req.Serie)
		}
		return nil, err
	}
	log.Info().Str("serie", n.Serie).Int64("correlativo", n.Correlativo).Msg("serie creada")
	return numeracionToResponse(n), nil
}

// Desactivar stops issuance. The row stays: sales keep referencing it.
func (s *numeracionService) Desactivar(ctx context.Context, serie string) error {
	n, err := s.repo.SetActivo(ctx, serie, false)
	if err != nil {
		return err
	}
	if n == 0 {
		return apierror.SeriesNotFound(serie)
	}
	log.Info().Str("serie", serie).Msg("serie desactivada")
	return nil
}

func (s *numeracionService) Listar(ctx context.Context) ([]dto.NumeracionResponse, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.NumeracionResponse, 0, len(rows))
	for i := range rows {
		out = append(out, *numeracionToResponse(&rows[i]))
	}
	return out, nil
}

func numeracionToResponse(n *model.Numeracion) *dto.NumeracionResponse {
	return &dto.NumeracionResponse{
		Serie:       n.Serie,
		Descripcion: n.Descripcion,
		Correlativo: n.Correlativo,
		Activo:      n.Activo,
	}
}
