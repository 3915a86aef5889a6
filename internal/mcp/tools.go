package mcp

import "github.com/mark3labs/mcp-go/mcp"

var logInteractionTool = mcp.NewTool("log_interaction",
	mcp.WithDescription("Log an HCP interaction from a free-text note. Extracts the details, scores sentiment, suggests follow-ups and stores the record."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("The representative's note, e.g. \"Met Dr. Patel, discussed the new drug, gave 2 pamphlets\""),
	),
	mcp.WithString("rep_id",
		mcp.Description("Representative ID recorded on the interaction"),
	),
)

var editInteractionTool = mcp.NewTool("edit_interaction",
	mcp.WithDescription("Apply a natural-language correction to a stored interaction. Only the fields the request mentions change."),
	mcp.WithString("interaction_id",
		mcp.Required(),
		mcp.Description("ID of the interaction to edit"),
	),
	mcp.WithString("edit_request",
		mcp.Required(),
		mcp.Description("What to change, e.g. \"sentiment was actually negative\""),
	),
	mcp.WithString("rep_id",
		mcp.Description("Representative making the change"),
	),
)

var searchHCPTool = mcp.NewTool("search_hcp",
	mcp.WithDescription("Find healthcare professionals whose name contains the query (case-insensitive)."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Full or partial HCP name"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of matches to return (default 5)"),
	),
)

var sentimentAnalyzerTool = mcp.NewTool("sentiment_analyzer",
	mcp.WithDescription("Classify the sentiment of an interaction note as positive, neutral or negative."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Text to classify"),
	),
)

var followupSuggestorTool = mcp.NewTool("followup_suggestor",
	mcp.WithDescription("Suggest prioritised follow-up actions for an interaction summary."),
	mcp.WithString("summary",
		mcp.Required(),
		mcp.Description("Interaction summary"),
	),
	mcp.WithString("sentiment",
		mcp.Description("Sentiment of the interaction"),
		mcp.Enum("positive", "neutral", "negative"),
	),
)
