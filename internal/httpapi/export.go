package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tealeg/xlsx"

	"pawnshop/backend/internal/domain"
)

func (a *API) handleExportProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context(), actorFrom(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := writeProductSheet(&buf, products); err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	filename := fmt.Sprintf("products-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Transfer-Encoding", "binary")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func writeProductSheet(w io.Writer, products []domain.Product) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range []string{"prod_id", "prod_name", "unit_price", "amount"} {
		header.AddCell().SetString(h)
	}

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetInt64(p.ID)
		row.AddCell().SetString(p.Name)
		if p.UnitPrice.Valid {
			row.AddCell().SetString(p.UnitPrice.Decimal.StringFixed(2))
		} else {
			row.AddCell().SetString("")
		}
		if p.Amount != nil {
			row.AddCell().SetInt64(*p.Amount)
		} else {
			row.AddCell().SetString("")
		}
	}

	return file.Write(w)
}
