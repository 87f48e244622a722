// Package extract turns decoded chapter pages into clean text. XPath queries
// go through Document so the extraction steps can be exercised against
// in-memory markup.
package extract
