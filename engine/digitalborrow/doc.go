// Package digitalborrow confirms, extends, and activates time-bounded digital loans.
package digitalborrow
