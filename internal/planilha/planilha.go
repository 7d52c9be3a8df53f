// Package planilha lê e escreve folhas xlsx usadas em extratos e exportações.
package planilha

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var (
	ErrPlanilhaVazia = errors.New("planilha sem linhas")
	ErrDataInvalida  = errors.New("data inválida")
	ErrValorInvalido = errors.New("valor inválido")
)

// ContentType é o MIME das folhas geradas.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LerLinhas lê a primeira folha usando a linha de cabeçalho como chaves.
// Linhas totalmente vazias são ignoradas.
func LerLinhas(r io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("abrir planilha: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrPlanilhaVazia
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("ler folha %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrPlanilhaVazia
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		linha := make(map[string]string, len(header))
		vazia := true
		for i, h := range header {
			if h == "" || i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v != "" {
				vazia = false
			}
			linha[h] = v
		}
		if !vazia {
			out = append(out, linha)
		}
	}
	return out, nil
}

// NovaFolha gera um xlsx com uma única folha.
func NovaFolha(nome string, cabecalho []string, linhas [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", nome); err != nil {
		return nil, fmt.Errorf("nomear folha: %w", err)
	}

	head := make([]any, len(cabecalho))
	for i, h := range cabecalho {
		head[i] = h
	}
	if err := f.SetSheetRow(nome, "A1", &head); err != nil {
		return nil, err
	}
	for i, linha := range linhas {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := linha
		if err := f.SetSheetRow(nome, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("gravar planilha: %w", err)
	}
	return buf.Bytes(), nil
}

var layoutsData = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
	"02/01/06",
	"02.01.2006",
	time.RFC3339,
}

// ParseData aceita número de série do Excel ou texto dd/MM/yyyy e variantes.
func ParseData(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, ErrDataInvalida
	}
	if loc == nil {
		loc = time.UTC
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, ErrDataInvalida
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
	}
	for _, layout := range layoutsData {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrDataInvalida
}

// ParseValor interpreta montantes com separador decimal "," ou ".".
func ParseValor(v string) (decimal.Decimal, error) {
	s := strings.TrimSpace(v)
	for _, suf := range []string{"MZN", "MT", "mt", "Mt"} {
		s = strings.TrimSpace(strings.TrimSuffix(s, suf))
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	negativo := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negativo = true
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return decimal.Zero, ErrValorInvalido
	}

	virgula := strings.LastIndex(s, ",")
	ponto := strings.LastIndex(s, ".")
	switch {
	case virgula >= 0 && ponto >= 0:
		if virgula > ponto {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case virgula >= 0:
		if strings.Count(s, ",") == 1 && len(s)-virgula-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case ponto >= 0 && strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrValorInvalido
	}
	if negativo {
		d = d.Neg()
	}
	return d, nil
}

// Moeda formata o valor como texto com duas casas e sufixo MT.
func Moeda(d decimal.Decimal) string {
	return d.StringFixed(2) + " MT"
}
