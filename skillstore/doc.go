// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可证管辖,该许可证可以在
// LICENSE 文件中找到。

/*
包 skillstore 是技能管理核心中结构化持久状态的唯一所有者。

它基于 gorm.io/gorm 实现，通过 AutoMigrate 管理 schema，默认使用纯 Go
的 glebarez/sqlite 驱动，也可切换到 postgres 或 mysql 以支持集中部署。
Repository 对外暴露技能的增删改查、版本历史、依赖/标签管理、统计更新
以及按技能追加的执行日志。所有多行写入都在单个事务内完成：失败时整体
回滚，不留下可见的部分状态。
*/
package skillstore
