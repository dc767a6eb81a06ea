package configloader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig 从 yaml 文件加载配置到 v。
// 文件内容先做 ${ENV_VAR} 环境变量展开，再反序列化，
// 便于同一份配置文件在不同环境注入 broker 地址、密钥等。
func LoadConfig(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		// 未定义的变量原样保留，避免把 yaml 中无关的 $ 吃掉
		return "${" + key + "}"
	})

	if err := yaml.Unmarshal([]byte(expanded), v); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	// 配置结构体可选实现 Validate 钩子
	if validator, ok := v.(interface{ Validate() error }); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("validate config %s: %w", path, err)
		}
	}
	return nil
}
