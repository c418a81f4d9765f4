// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可证管辖,该许可证可以在
// LICENSE 文件中找到。

/*
包 skillmanager 是技能管理核心的唯一对外入口。

它拥有 Repository 与 VectorIndex，按需实例化 Composer，并在两者之间
强制执行跨组件不变量：写路径上，Repository 的变更严格先于对应的
VectorIndex 变更；auto_sync 打开时两者在同一次调用内保持一致，关闭时
仅通过显式的 Sync 或 RebuildIndex 追平。
*/
package skillmanager
