package signers

import (
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
)

// MissingSignerError 列出注册表中缺失的全部公钥。
// 一次性报全量缺失而不是第一个，调用方才能据此一次补齐凭据。
type MissingSignerError struct {
	Missing []common.PublicKey
}

func (e *MissingSignerError) Error() string {
	keys := make([]string, 0, len(e.Missing))
	for _, k := range e.Missing {
		keys = append(keys, k.ToBase58())
	}
	return fmt.Sprintf("missing signers: [%s]", strings.Join(keys, ", "))
}

// Registry 是公钥到签名能力的去重映射。
// 会话级长生命周期对象：构建一次、按需 Extend，builder 与引擎只读不写。
type Registry struct {
	order []common.PublicKey
	byKey map[common.PublicKey]Signer
}

// NewRegistry 创建注册表并注册给定签名器。
func NewRegistry(ss ...Signer) *Registry {
	r := &Registry{byKey: make(map[common.PublicKey]Signer)}
	r.Extend(ss...)
	return r
}

// Register 按公钥登记签名能力。同 key 重复登记时后注册者覆盖先注册者（last-wins）。
func (r *Registry) Register(s Signer) *Registry {
	key := s.Pubkey()
	if _, exists := r.byKey[key]; !exists {
		r.order = append(r.order, key)
	}
	r.byKey[key] = s
	return r
}

// Extend 批量登记，冲突策略与 Register 一致。
func (r *Registry) Extend(ss ...Signer) *Registry {
	for _, s := range ss {
		r.Register(s)
	}
	return r
}

// Merge 把另一注册表并入当前注册表，冲突时 other 的条目胜出。
func (r *Registry) Merge(other *Registry) *Registry {
	for _, key := range other.order {
		r.Register(other.byKey[key])
	}
	return r
}

// Resolve 按给定公钥集合解析签名能力，顺序与入参一致。
// 任一缺失都会失败，且错误里列出全部未命中的 key。
func (r *Registry) Resolve(keys []common.PublicKey) ([]Signer, error) {
	out := make([]Signer, 0, len(keys))
	var missing []common.PublicKey
	for _, key := range keys {
		s, ok := r.byKey[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		out = append(out, s)
	}
	if len(missing) > 0 {
		return nil, &MissingSignerError{Missing: missing}
	}
	return out, nil
}

// Contains 报告公钥是否已注册。
func (r *Registry) Contains(key common.PublicKey) bool {
	_, ok := r.byKey[key]
	return ok
}

// Len 返回已注册的签名器数量。
func (r *Registry) Len() int { return len(r.order) }

// Pubkeys 返回已注册的公钥，保持注册顺序。
func (r *Registry) Pubkeys() []common.PublicKey {
	out := make([]common.PublicKey, len(r.order))
	copy(out, r.order)
	return out
}

// Clone 返回浅拷贝：映射独立、签名能力共享。
// 重试路径持有 Clone 即可复用能力，不影响原注册表后续的 Extend。
func (r *Registry) Clone() *Registry {
	clone := &Registry{
		order: make([]common.PublicKey, len(r.order)),
		byKey: make(map[common.PublicKey]Signer, len(r.byKey)),
	}
	copy(clone.order, r.order)
	for k, v := range r.byKey {
		clone.byKey[k] = v
	}
	return clone
}
