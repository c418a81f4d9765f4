// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可证管辖,该许可证可以在
// LICENSE 文件中找到。

/*
包 vectorindex 维护一个按技能名称索引的近似最近邻（HNSW 族）向量索引，
并持久化到磁盘。

嵌入器与索引都是惰性获取的：在第一次需要嵌入或查询的操作之前不会被
实例化。如果嵌入能力在运行时不可用，索引会退化为空操作，查询返回空
结果而不是错误——调用方必须把"没有向量结果"当作合法结果处理。
*/
package vectorindex
