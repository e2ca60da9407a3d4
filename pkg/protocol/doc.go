// Package protocol 实现 HM8143 电源的 ASCII 命令编码和响应解码.
//
// 所有函数都是纯函数, 不做任何 I/O. 参数在编码前校验, 校验失败时返回
// *ValidationError 且不生成任何命令字符串.
package protocol
