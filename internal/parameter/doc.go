// Package parameter resolves the symbolic references of test-case and
// test-step parameters and casts the result to the declared type.
//
// A value is read left to right: [|] separates the elements of a list
// literal, [+] concatenates operands, and each operand is either literal
// text or one of
//
//	DEFAULT                       descriptor default value
//	FROM_DEVICE:<device>:<key>    merged device config
//	FROM_BENCH:<equipment>:<key>  bench config
//	FROM_TC:<name>                current test-case parameter
//	FROM_CTX:<name>               test-step context, resolved at run time
//
// ResolveStatic performs every substitution that does not need a step
// context; ResolveDynamic finishes the FROM_CTX ones. Every rejection is an
// INVALID_PARAMETER error naming the parameter and its offending value.
package parameter
