// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可证管辖,该许可证可以在
// LICENSE 文件中找到。

// Package config loads the skills management core's configuration surface:
// defaults, then an optional YAML file, then environment variable overrides.
package config
