package main

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/John-Robertt/subfetch/internal/domain"
	"github.com/John-Robertt/subfetch/internal/match"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderCandidates 渲染 search 的候选表；all=false 时只列出可自动选用的候选。
func renderCandidates(v domain.Video, ranked []match.Ranked, all bool) string {
	headers := []string{"#", "LANG", "ID", "DOWNLOADS", "SCORE", "MATCHES", "TITLE"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft}

	rows := make([][]string, 0, len(ranked))
	for _, r := range ranked {
		ok := match.Acceptable(v, r.Matches)
		if !ok && !all {
			continue
		}
		score := strconv.Itoa(r.Score)
		if !ok {
			score += "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(len(rows) + 1),
			domain.LanguageCode(r.Subtitle.Language),
			r.Subtitle.ID,
			humanize.Comma(int64(r.Subtitle.Downloads)),
			score,
			strings.Join(r.Matches.Names(), ","),
			truncate(r.Subtitle.Title, 60),
		})
	}
	if len(rows) == 0 {
		return "没有达到自动选用阈值的候选（使用 --all 查看全部）"
	}
	return renderTable(headers, rows, aligns)
}
