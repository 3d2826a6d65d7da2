// internal/storage/file_storage.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("storage: not found")

// FileStorage 提供数据目录下的 JSON 文件存储
type FileStorage struct {
	BaseDir string

	// 文件级别锁 path -> *sync.RWMutex
	fileLocks sync.Map
}

// NewFileStorage 创建文件存储服务
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &FileStorage{BaseDir: baseDir}, nil
}

// 获取文件锁
func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

func (fs *FileStorage) path(filename string) string {
	return filepath.Join(fs.BaseDir, filename)
}

// writeAtomic 先写临时文件再重命名，调用方持有写锁
func writeAtomic(fullPath string, content []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, perm); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("保存文件失败: %w", err)
	}
	return nil
}

// SaveJSONFile 保存JSON文件
func (fs *FileStorage) SaveJSONFile(filename string, data interface{}) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	fullPath := fs.path(filename)
	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	return writeAtomic(fullPath, content, 0600)
}

// LoadJSONFile 读取JSON文件，文件不存在时返回 ErrNotFound
func (fs *FileStorage) LoadJSONFile(filename string, v interface{}) error {
	fullPath := fs.path(filename)
	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	return readJSON(fullPath, v)
}

func readJSON(fullPath string, v interface{}) error {
	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("读取文件失败: %w", err)
	}
	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("解析JSON失败 %s: %w", filepath.Base(fullPath), err)
	}
	return nil
}

// UpdateJSONFile 在写锁内完成读取-修改-写回；文件不存在时 v 保持零值
func (fs *FileStorage) UpdateJSONFile(filename string, v interface{}, mutate func() error) error {
	fullPath := fs.path(filename)
	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := readJSON(fullPath, v); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := mutate(); err != nil {
		return err
	}

	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}
	return writeAtomic(fullPath, content, 0600)
}

// FileExists 检查文件是否存在
func (fs *FileStorage) FileExists(filename string) bool {
	_, err := os.Stat(fs.path(filename))
	return err == nil
}

// DeleteFile 删除文件，不存在时不报错
func (fs *FileStorage) DeleteFile(filename string) error {
	fullPath := fs.path(filename)
	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}
