package storage

import (
	"encoding/csv"
	"io"
	"strings"
)

// AddressStore 去重地址集合的持久化，每周期整体覆盖写
type AddressStore struct {
	path string
}

func NewAddressStore(path string) *AddressStore {
	return &AddressStore{path: path}
}

func (s *AddressStore) Path() string { return s.path }

// Load 读取地址快照，文件不存在时返回空集合
func (s *AddressStore) Load() ([]string, error) {
	rows, err := readRows(s.path, nil)
	if err != nil {
		return nil, err
	}
	ips := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if ip := strings.TrimSpace(row[0]); ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips, nil
}

// Save 原子覆盖写入全部地址
func (s *AddressStore) Save(ips []string) error {
	return writeFileAtomic(s.path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		for _, ip := range ips {
			if err := cw.Write([]string{ip}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}
