// Command tinsh is a minimal host console for tin scripts: it loads a
// source file, runs it, then ticks the context's scheduler on a fixed
// interval until every scheduled command has fired.
package main
