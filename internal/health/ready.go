package health

import "sync"

// Readiness 启动阶段的就绪标记；所有已登记组件均就绪才算就绪
type Readiness struct {
	mu    sync.RWMutex
	state map[string]bool
}

// NewReadiness 登记需要等待的组件，初始均未就绪
func NewReadiness(components ...string) *Readiness {
	r := &Readiness{state: make(map[string]bool, len(components))}
	for _, c := range components {
		r.state[c] = false
	}
	return r
}

// Set 设置组件就绪状态；未登记的组件会被登记
func (r *Readiness) Set(component string, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[component] = ready
}

// Ready 总体就绪
func (r *Readiness) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ok := range r.state {
		if !ok {
			return false
		}
	}
	return true
}

// Pending 尚未就绪的组件
func (r *Readiness) Pending() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for c, ok := range r.state {
		if !ok {
			out = append(out, c)
		}
	}
	return out
}
