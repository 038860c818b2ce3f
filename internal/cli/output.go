package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shaiso/Rollout/internal/queue"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(os.Stdout, os.Stderr, jsonMode)
}

// NewOutputTo создаёт Output с заданными потоками.
func NewOutputTo(w, errW io.Writer, jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// Report выводит итог очереди: строка на проход.
// В табличном режиме вывод задач печатается под таблицей.
func (o *Output) Report(report *queue.Report) {
	if o.jsonMode {
		o.JSON(report.Records())
		return
	}

	headers := []string{"CONNECTION", "STAGE", "STATUS", "CANCELED_BY", "ERROR"}
	rows := make([][]string, len(report.Passes))
	for i, p := range report.Passes {
		errText := ""
		if p.Err != nil {
			errText = p.Err.Error()
		}
		rows[i] = []string{p.Connection, dash(p.Stage), string(p.Status), dash(p.CanceledBy), dash(errText)}
	}
	o.Table(headers, rows)

	for _, p := range report.Passes {
		for _, out := range p.Outputs {
			if out = strings.TrimSpace(out); out != "" {
				fmt.Fprintf(o.w, "[%s] %s\n", p.Handle(), out)
			}
		}
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
