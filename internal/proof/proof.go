// Package proof 服药照片的存储路径与类型规则，客户端与服务端共用。
package proof

import (
	"fmt"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Path 生成照片存储路径：<用户ID>/<药品ID>-<毫秒时间戳>-<随机后缀><扩展名>
func Path(userID string, medicationID int64, at time.Time, suffix, ext string) string {
	return fmt.Sprintf("%s/%d-%d-%s%s", userID, medicationID, at.UnixMilli(), suffix, ext)
}

// RandomSuffix 8 位随机后缀，同一毫秒内的两次上传也不会冲突
func RandomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Extension 优先取文件名扩展名，其次按 content type 推断
func Extension(name, contentType string) string {
	if ext := strings.ToLower(path.Ext(name)); ext != "" {
		return ext
	}
	if contentType == "image/jpeg" {
		return ".jpg"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// ContentType 依次使用声明类型、扩展名、内容嗅探
func ContentType(declared, p string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// IsImage content type 是否为图片
func IsImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mediaType, "image/")
}

// InNamespace 路径是否位于 userID 目录下，且不含路径穿越
func InNamespace(userID, p string) bool {
	if userID == "" || p == "" || strings.Contains(p, "..") || strings.HasPrefix(p, "/") {
		return false
	}
	if path.Clean(p) != p {
		return false
	}
	owner, rest, ok := strings.Cut(p, "/")
	return ok && owner == userID && rest != ""
}

// Owner 路径所属的用户ID
func Owner(p string) (int64, bool) {
	owner, rest, ok := strings.Cut(p, "/")
	if !ok || rest == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(owner, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
