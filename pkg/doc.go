// Package pkg provides the core libraries for crateprune, a tool that
// detects unused dependencies in cargo workspaces.
//
// # Overview
//
// Crateprune builds a workspace once, intercepts every compiler
// invocation, and reconciles the dependencies each package declares
// against the libraries its compiled code actually references. The pkg
// directory is organized along that pipeline:
//
//  1. [workspace] - Resolved package graph, metadata parsing, configuration
//  2. [depindex] - Per-package dependency name indexes
//  3. [build] - Compile orchestration and the invocation hook seam
//  4. [intercept] - Invocation capture and per-invocation build config
//  5. [usage] - Usage-analysis artifacts and used/declared correlation
//  6. [report] - Unused-set computation and tree rendering
//
// # Architecture
//
// The typical data flow through a run:
//
//	cargo metadata
//	         ↓
//	    [workspace] package (resolve the dependency graph)
//	         ↓
//	    [depindex] package (link-name and library-name maps)
//	         ↓
//	    [build] + [intercept] (compile once, capture invocations)
//	         ↓
//	    [usage] package (artifacts → used/declared sets)
//	         ↓
//	    [report] package (declared minus used, rendered as trees)
//
// Each stage hands an immutable result to the next; only the build stage
// runs concurrent work.
package pkg
