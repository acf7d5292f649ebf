package mcp

import "github.com/mark3labs/mcp-go/mcp"

var libraryToolDef = mcp.NewTool("playbook_library",
	mcp.WithDescription("List published playbook cards from every owner. Filters are case-insensitive; \"All\" or an empty value means no constraint."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("query", mcp.Description("Substring matched against title, summary and tags")),
	mcp.WithString("industry", mcp.Description("Industry name, \"All\", or \"Other\" with industry_other")),
	mcp.WithString("industry_other", mcp.Description("Free-text industry used when industry is \"Other\"")),
	mcp.WithString("category", mcp.Description("Category name, \"All\", or \"Other\" with category_other")),
	mcp.WithString("category_other", mcp.Description("Free-text category used when category is \"Other\"")),
)

var listToolDef = mcp.NewTool("playbook_list",
	mcp.WithDescription("List your own playbook entries, newest first."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("filter", mcp.Description("All, Published, Unpublished, or a status (Draft, Needs Edit, Approved)")),
)

var fetchToolDef = mcp.NewTool("playbook_fetch",
	mcp.WithDescription("Fetch one entry by id. Looks in your entries, the built-in suggestions, then the published library."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
)

var searchToolDef = mcp.NewTool("playbook_search",
	mcp.WithDescription("Search your entries and the suggestions for an industry by title, summary and tags."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("query", mcp.Required(), mcp.Description("Search term")),
	mcp.WithString("industry", mcp.Description("Industry whose suggestions are searched (default: your selected industry)")),
)

var approveToolDef = mcp.NewTool("playbook_approve",
	mcp.WithDescription("Mark one of your entries as Approved."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
)

var publishToolDef = mcp.NewTool("playbook_publish",
	mcp.WithDescription("Publish one of your entries to the shared library, or unpublish it."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
	mcp.WithBoolean("published", mcp.Description("true to publish (default), false to unpublish")),
)

var deleteToolDef = mcp.NewTool("playbook_delete",
	mcp.WithDescription("Permanently delete one of your entries. Unknown ids succeed."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
)

var exportTextToolDef = mcp.NewTool("playbook_export_text",
	mcp.WithDescription("Render an entry as the Markdown used for copy, share and download."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
)

var reloadToolDef = mcp.NewTool("playbook_reload",
	mcp.WithDescription("Refetch your entries from storage, picking up changes made by the web UI or the CLI since the list was loaded."),
	mcp.WithIdempotentHintAnnotation(true),
)
