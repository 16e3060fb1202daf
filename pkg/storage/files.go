package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrPersistence 文件读写失败，下一周期重试
var ErrPersistence = errors.New("持久化失败")

func persistErr(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrPersistence, op, path, err)
}

// appendRows 追加写入 CSV 行，文件为空时先写表头
func appendRows(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return persistErr("mkdir", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return persistErr("open", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return persistErr("stat", path, err)
	}

	if header != nil && info.Size() == 0 {
		rows = append([][]string{header}, rows...)
	}
	if err := csv.NewWriter(f).WriteAll(rows); err != nil {
		f.Close()
		return persistErr("write", path, err)
	}
	if err := f.Close(); err != nil {
		return persistErr("close", path, err)
	}
	return nil
}

// readRows 读取全部 CSV 行，文件不存在时返回空
func readRows(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("open", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]string
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, persistErr("read", path, err)
		}
		if first && header != nil && isHeader(row, header) {
			first = false
			continue
		}
		first = false
		rows = append(rows, row)
	}
	return rows, nil
}

func isHeader(row, header []string) bool {
	return len(row) > 0 && len(header) > 0 && row[0] == header[0]
}

// writeFileAtomic 写入临时文件后重命名，读者只会看到完整的旧文件或新文件
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return persistErr("mkdir", path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return persistErr("create", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return persistErr("write", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return persistErr("sync", path, err)
	}
	if err := tmp.Close(); err != nil {
		return persistErr("close", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return persistErr("chmod", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return persistErr("rename", path, err)
	}
	return nil
}
