// internal/services/credential_service.go
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/gateway"
	"github.com/Corphon/ScriptStudio/internal/storage"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

// CredentialsFile 文件后端使用的文件名
const CredentialsFile = "credentials.json"

// CredentialsHash Redis 后端使用的 hash 名称
const CredentialsHash = "scriptstudio:credentials"

var credentialNamePattern = regexp.MustCompile(`^(gemini_api_key|apikey_[a-z0-9][a-z0-9_.-]*)$`)

// CredentialInfo 对外展示的凭据信息，不含明文
type CredentialInfo struct {
	Name   string `json:"name"`
	Masked string `json:"masked"`
}

// CredentialService 加密保存各 provider 的 API 凭据，实现 gateway.CredentialProvider
type CredentialService struct {
	store  storage.KeyValueStore
	box    *utils.SecretBox
	logger *utils.Logger
}

// NewCredentialService 创建凭据服务
func NewCredentialService(store storage.KeyValueStore, box *utils.SecretBox) *CredentialService {
	return &CredentialService{
		store:  store,
		box:    box,
		logger: utils.GetLogger(),
	}
}

// ValidateCredentialName 只接受 gemini_api_key 与 apikey_<provider>
func ValidateCredentialName(name string) error {
	if !credentialNamePattern.MatchString(name) {
		return apperrors.NewValidationError(
			fmt.Sprintf("invalid credential name %q: use %q or %q", name, gateway.NativeCredentialKey, gateway.CredentialKey("<provider>")), nil)
	}
	return nil
}

// Get 每次调用都从后端读取，读取失败视为不存在
func (s *CredentialService) Get(name string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sealed, ok, err := s.store.Get(ctx, name)
	if err != nil {
		s.logger.Error("Failed to read credential", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
		return "", false
	}
	if !ok || sealed == "" {
		return "", false
	}

	value, err := s.box.Open(sealed)
	if err != nil {
		s.logger.Error("Failed to decrypt credential", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
		return "", false
	}
	return value, value != ""
}

// Set 加密后保存
func (s *CredentialService) Set(ctx context.Context, name, value string) error {
	if err := ValidateCredentialName(name); err != nil {
		return err
	}
	if value == "" {
		return apperrors.NewValidationError("credential value is required", nil)
	}

	sealed, err := s.box.Seal(value)
	if err != nil {
		return apperrors.NewProcessingError("failed to encrypt credential", err)
	}
	if err := s.store.Set(ctx, name, sealed); err != nil {
		return apperrors.NewProcessingError("failed to store credential", err)
	}

	s.logger.Info("Credential updated", map[string]interface{}{"name": name})
	return nil
}

// Delete 删除凭据，不存在时返回 NotFound
func (s *CredentialService) Delete(ctx context.Context, name string) error {
	if err := ValidateCredentialName(name); err != nil {
		return err
	}

	_, ok, err := s.store.Get(ctx, name)
	if err != nil {
		return apperrors.NewProcessingError("failed to read credential", err)
	}
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("credential %q not found", name), nil)
	}
	if err := s.store.Delete(ctx, name); err != nil {
		return apperrors.NewProcessingError("failed to delete credential", err)
	}

	s.logger.Info("Credential deleted", map[string]interface{}{"name": name})
	return nil
}

// List 列出已保存的凭据，值经过遮罩
func (s *CredentialService) List(ctx context.Context) ([]CredentialInfo, error) {
	names, err := s.store.Keys(ctx)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to list credentials", err)
	}

	infos := make([]CredentialInfo, 0, len(names))
	for _, name := range names {
		value, ok := s.Get(name)
		if !ok {
			continue
		}
		infos = append(infos, CredentialInfo{Name: name, Masked: utils.MaskSecret(value)})
	}
	return infos, nil
}

// LoadOrCreateSecret 未配置 CREDENTIAL_SECRET 时在数据目录生成并保存一个随机密钥
func LoadOrCreateSecret(fs *storage.FileStorage, filename string) (string, error) {
	var stored struct {
		Secret string `json:"secret"`
	}
	err := fs.LoadJSONFile(filename, &stored)
	if err == nil && stored.Secret != "" {
		return stored.Secret, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	stored.Secret = hex.EncodeToString(buf)
	if err := fs.SaveJSONFile(filename, stored); err != nil {
		return "", err
	}
	return stored.Secret, nil
}

var _ gateway.CredentialProvider = (*CredentialService)(nil)
