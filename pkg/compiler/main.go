// Package compiler translates a small C dialect into QBE intermediate
// language.
//
// Pipeline: preprocessed C source → Lex → Parse (one declaration at a
// time) → Optimise → Generator → QBE IR text
//
// Each function is folded and lowered as soon as its body has been parsed,
// and global data is written as soon as it is declared, so the IR follows
// source order.
package compiler
