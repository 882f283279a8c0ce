package infra

// pdf.go: ticket and closing-report PDFs using go-pdf/fpdf.
// Tickets are thermal-receipt sized (74mm wide); closing reports are A4.
// Files are written to storagePath and the absolute path is returned.

import (
	"fmt"
	"os"
	"path/filepath"

	"cajapos/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateTicketPDF generates the receipt of a persisted Venta. nombres maps
// article ids to display names; missing entries fall back to the article id.
func GenerateTicketPDF(venta *model.Venta, nombres map[uuid.UUID]string, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("factura_%s_%d.pdf", venta.Serie, venta.NumeroFactura)
	filePath := filepath.Join(storagePath, fileName)

	alto := 80 + float64(len(venta.Items))*5
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: alto},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, "Factura", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Serie %s  N° %06d", venta.Serie, venta.NumeroFactura), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, venta.Fecha.Format("02/01/2006  15:04"), "", 1, "C", false, 0, "")
	condicion := "Contado"
	if !venta.Contado {
		condicion = "Credito"
	}
	pdf.CellFormat(contentW, 4, condicion+" - "+venta.MetodoPago, "", 1, "C", false, 0, "")
	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Items ─────────────────────────────────────────────────────────────────
	col1 := contentW * 0.46
	col2 := contentW * 0.14
	col3 := contentW * 0.40

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Articulo", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Cant", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Monto", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, item := range venta.Items {
		nombre, ok := nombres[item.ArticuloID]
		if !ok {
			nombre = item.ArticuloID.String()[:8]
		}
		if len(nombre) > 20 {
			nombre = nombre[:19] + "…"
		}
		pdf.CellFormat(col1, 5, nombre, "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, fmt.Sprintf("x%d", item.Cantidad), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, item.Monto.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ────────────────────────────────────────────────────────────────
	fila := func(label string, v decimal.Decimal) {
		pdf.CellFormat(col1+col2, 5, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, v.StringFixed(2), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "", 7)
	fila("Subtotal:", venta.Subtotal)
	fila(fmt.Sprintf("Impuesto (%s%%):", venta.TasaImpuesto.Shift(2).String()), venta.Impuesto)
	pdf.SetFont("Helvetica", "B", 9)
	fila("TOTAL "+venta.MonedaCodigo+":", venta.Total)
	if !venta.TipoCambio.Equal(decimal.NewFromInt(1)) {
		pdf.SetFont("Helvetica", "", 7)
		fila("Total moneda base:", venta.TotalBase)
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "¡Gracias por su compra!", "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

// GenerateCierrePDF renders the reconciliation of a closing on an A4 page.
func GenerateCierrePDF(c *model.CierreCaja, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("cierre_%s.pdf", c.Fecha.Format("20060102_150405")))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Cierre de caja", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Desde %s  hasta %s",
		c.Desde.Format("02/01/2006 15:04"), c.Fecha.Format("02/01/2006 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	fila := func(label string, v decimal.Decimal, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(110, 6, label, "B", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, v.StringFixed(2), "B", 1, "R", false, 0, "")
	}

	fila("Fondo inicial", c.FondoInicial, false)
	fila("Ventas efectivo", c.VentasEfectivo, false)
	fila("Ventas tarjeta", c.VentasTarjeta, false)
	fila("Ventas transferencia", c.VentasTransferencia, false)
	fila("Ventas otros medios", c.VentasOtro, false)
	fila("Ventas a credito", c.VentasCredito, false)
	fila(fmt.Sprintf("Ventas brutas (%d)", c.CantidadVentas), c.VentasBrutas, true)
	fila(fmt.Sprintf("Devoluciones (%d)", c.CantidadDevoluciones), c.DevolucionesTotal, false)
	fila("Devoluciones en efectivo", c.DevolucionesEfectivo, false)
	pdf.Ln(2)
	fila("Efectivo esperado", c.EfectivoEsperado, true)
	fila("Efectivo contado", c.EfectivoContado, true)
	fila("Diferencia ("+c.Clasificacion+")", c.Diferencia, true)
	fila("Fondo siguiente turno", c.FondoSiguiente, false)

	if c.Observaciones != nil && *c.Observaciones != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, "Observaciones: "+*c.Observaciones, "", "L", false)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
