// Package repository 基于 gorm 的数据访问层，方法都接收 ctx，并只返回 gorm 或本包定义的错误。
package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrDuplicate 违反唯一约束
var ErrDuplicate = errors.New("duplicate record")

// IsNotFound 是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
