// Package ui is the interactive terminal front end.
//
// The model never blocks on work. It submits jobs to the scheduler, and on
// each wake or fallback tick drains finished completions with Poll and folds
// them into the game list.
package ui
