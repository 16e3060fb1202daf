package storage

import (
	"strconv"
	"strings"

	"go-sysmonitor/pkg/models"
)

var ledgerHeader = []string{"IP Address", "Is Whitelisted", "Abuse Confidence Score", "Country"}

// Ledger 已检查地址台账，每个 IP 至多一条
// 查找为整文件线性扫描，写入只追加
type Ledger struct {
	path string
}

func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

func (l *Ledger) Path() string { return l.path }

// Contains 判断地址是否已检查
func (l *Ledger) Contains(ip string) (bool, error) {
	rows, err := readRows(l.path, ledgerHeader)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if len(row) > 0 && row[0] == ip {
			return true, nil
		}
	}
	return false, nil
}

// Append 追加一条检查结果，空字段写为空单元格
func (l *Ledger) Append(v models.Verdict) error {
	row := []string{v.IP, formatBool(v.IsWhitelisted), formatInt(v.ConfidenceScore), v.Country}
	return appendRows(l.path, ledgerHeader, [][]string{row})
}

// Entries 读取全部台账记录
func (l *Ledger) Entries() ([]models.Verdict, error) {
	rows, err := readRows(l.path, ledgerHeader)
	if err != nil {
		return nil, err
	}
	out := make([]models.Verdict, 0, len(rows))
	for _, row := range rows {
		if len(row) < 4 {
			continue
		}
		out = append(out, models.Verdict{
			IP:              row[0],
			IsWhitelisted:   parseBool(row[1]),
			ConfidenceScore: parseInt(row[2]),
			Country:         row[3],
		})
	}
	return out, nil
}

// FlaggedLog 恶意地址日志，台账的派生子集
type FlaggedLog struct {
	path string
}

func NewFlaggedLog(path string) *FlaggedLog {
	return &FlaggedLog{path: path}
}

func (f *FlaggedLog) Path() string { return f.path }

func (f *FlaggedLog) Append(v models.Verdict) error {
	row := []string{v.IP, formatInt(v.ConfidenceScore), v.Country}
	return appendRows(f.path, nil, [][]string{row})
}

func (f *FlaggedLog) Entries() ([]models.Verdict, error) {
	rows, err := readRows(f.path, nil)
	if err != nil {
		return nil, err
	}
	out := make([]models.Verdict, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		out = append(out, models.Verdict{IP: row[0], ConfidenceScore: parseInt(row[1]), Country: row[2]})
	}
	return out, nil
}

func formatBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func parseBool(s string) *bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &b
}

func parseInt(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}
