// Package mcp serves flow validation, repair, drawing and simulated sessions
// to Model Context Protocol clients over stdio or SSE.
package mcp
