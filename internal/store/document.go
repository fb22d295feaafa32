package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// LoadDocument 读取 JSON 文档到 v。文件不存在时返回 false 且不报错。
// 文档损坏时将原文件改名备份（带时间戳），随后同样返回 false，
// 调用方以空状态继续启动，绝不因坏文件崩溃。
func LoadDocument(path string, v interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("[store] read %s failed: %v", path, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		backup := fmt.Sprintf("%s.corrupt.%s", path, time.Now().Format("20060102150405"))
		if renameErr := os.Rename(path, backup); renameErr != nil {
			log.Printf("[store] backup corrupt %s failed: %v", path, renameErr)
		} else {
			log.Printf("[store] %s is corrupt (%v), backed up to %s", path, err, backup)
		}
		return false
	}
	return true
}

// SaveDocument 原子写入 JSON 文档：先写临时文件再改名覆盖，
// 中途崩溃不会损坏现有文件。
func SaveDocument(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
