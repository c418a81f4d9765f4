// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可证管辖,该许可证可以在
// LICENSE 文件中找到。

/*
包 composer 给定一个自然语言任务，产出一组按依赖关系排序、无环的技能
序列，并评估现有技能对该任务的覆盖程度。

Composer 只依赖两个小接口（技能读取与向量检索），不直接绑定到某个具体
的 Repository 或 VectorIndex 实现，方便在测试中替换为内存实现。
*/
package composer
