// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 哨兵错误：transport 层据此映射状态码
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
	// ErrOracle 分类 oracle 传输失败或返回无法解析
	ErrOracle = errors.New("oracle failure")
	// ErrCycleTimeout 单次 oracle 调用超时，整轮 cycle 中止
	ErrCycleTimeout = errors.New("cycle timeout")
	// ErrServiceUnavailable 服务尚未就绪
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Mark 在保留原始错误链的同时挂上哨兵，errors.Is 对两者均成立
func Mark(err error, sentinel error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return &marked{err: err, sentinel: sentinel}
}

type marked struct {
	err      error
	sentinel error
}

func (m *marked) Error() string { return fmt.Sprintf("%v: %v", m.sentinel, m.err) }

func (m *marked) Unwrap() []error { return []error{m.sentinel, m.err} }

// Is 透传标准库实现，调用方无需同时导入两个 errors 包
func Is(err, target error) bool { return errors.Is(err, target) }

// As 透传标准库实现
func As(err error, target interface{}) bool { return errors.As(err, target) }
