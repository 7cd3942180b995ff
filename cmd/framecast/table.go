package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// listTable describes a row-per-item view such as pending captures or the
// manifest history.
type listTable struct {
	headers []string
	aligns  []columnAlignment
	// noun names the rows in the caption, "captures" -> "3 captures".
	noun string
}

func (lt listTable) render(rows [][]string) string {
	columns := len(lt.headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, columns)
	for i, h := range lt.headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range lt.headers {
		align := text.AlignLeft
		if i < len(lt.aligns) && lt.aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: align})
	}
	tw.SetColumnConfigs(configs)

	if lt.noun != "" {
		tw.SetCaption(fmt.Sprintf("%d %s", len(rows), lt.noun))
	}
	return tw.Render()
}

// renderDetails prints label/value pairs without a header, labels right
// aligned against their values.
func renderDetails(pairs [][2]string) string {
	if len(pairs) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = true
	for _, p := range pairs {
		tw.AppendRow(table.Row{p[0], p[1]})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignLeft},
	})
	return tw.Render()
}

var (
	pendingTable = listTable{
		headers: []string{"File", "Flight", "Field", "Seq"},
		aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		noun:    "pending",
	}
	historyTable = listTable{
		headers: []string{"Saved", "File", "Flight", "Field", "Seq", "Size"},
		aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
		noun:    "saved",
	}
)
