// Package mcp exposes the RAG Service over the Model Context Protocol.
//
// It registers the stable tool dispatch surface — knowledge base
// management (create_kb, delete_kb, list_kbs), document management
// (upload_document, list_documents, get_document, delete_document,
// update_document), search and chat (search, chat, auto_routing_chat,
// clear_history), and admin (health) — plus the tool_search/tool_list
// discovery tools. Calls to the RAG tools are wrapped by internal/tracer
// for sanitized argument capture and per-tool metrics; the tool_search
// and tool_list handlers are not traced.
package mcp
