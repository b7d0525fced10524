// Package vm implements the smalljs virtual machine.
//
// This package contains:
//   - Tagged word representation and the constant dictionary
//   - Code units, the bytecode builder and the disassembler
//   - The flat object heap
//   - The stack-based execution engine and its call protocol
//
// Compiled functions are ordinary function objects from package object that
// carry a *Code under object.CodeKey. Everything else reachable from a
// program, natives included, lives in the global environment handed to the
// engine.
package vm
