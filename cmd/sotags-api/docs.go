// Package docs provides OpenAPI documentation for the Stack Overflow tag API
//
//	@title			Stack Overflow Tag API
//	@version		0.1
//	@description	Serves the most popular Stack Overflow tags with each tag's share of the
//	@description	combined question count. Tags are fetched from the StackExchange API on
//	@description	demand and cached.
//
//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html
//
//	@tag.name	tags
//	@tag.description	Cached tag listing and refresh
//
//	@tag.name	system
//	@tag.description	System health and version information
package main
