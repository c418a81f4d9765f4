// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可证管辖,该许可证可以在
// LICENSE 文件中找到。

/*
包 smcerr 定义了技能管理核心（Repository、VectorIndex、Composer、Manager）
统一使用的错误分类。

错误以「种类」而非 Go 类型区分：所有失败都封装为一个 *Error 值，携带
Code、可读 Message、是否可重试标记以及可选的底层 Cause。
*/
package smcerr
