// Package logging provides the leveled key/value logger shared by the
// backend server, the gateway client and the workbench.
package logging
