// Package profile 加载 YAML 放电曲线并在设备上按步骤执行。
package profile

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Step 一个恒流放电阶段
type Step struct {
	Name          string        `yaml:"name"`
	Current       float64       `yaml:"current"`       // A
	CutoffVoltage float64       `yaml:"cutoffVoltage"` // V，0 表示不设截止
	Timer         time.Duration `yaml:"timer"`         // 设备侧定时，0 表示不限
	Hold          time.Duration `yaml:"hold"`          // 本步最长保持时间
	ResetCounters bool          `yaml:"resetCounters"`
}

// Profile 放电曲线
type Profile struct {
	Name         string        `yaml:"name"`
	PollInterval time.Duration `yaml:"pollInterval"`
	Steps        []Step        `yaml:"steps"`
}

// Parse 解析并校验 YAML
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if p.PollInterval <= 0 {
		p.PollInterval = time.Second
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load 从文件加载
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Validate 检查步骤参数是否能被设备表示
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("profile: name is required")
	}
	if len(p.Steps) == 0 {
		return errors.New("profile: at least one step is required")
	}
	for i, s := range p.Steps {
		switch {
		case s.Current <= 0 || s.Current > 255:
			return fmt.Errorf("profile: step %d: current %.2f out of range", i, s.Current)
		case s.CutoffVoltage < 0 || s.CutoffVoltage > 255:
			return fmt.Errorf("profile: step %d: cutoffVoltage %.2f out of range", i, s.CutoffVoltage)
		case s.Timer < 0 || s.Timer > 65535*time.Second:
			return fmt.Errorf("profile: step %d: timer %s out of range", i, s.Timer)
		case s.Hold <= 0:
			return fmt.Errorf("profile: step %d: hold must be positive", i)
		}
	}
	return nil
}
