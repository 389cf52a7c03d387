package mcpserver

// OutputLayoutContract describes the exported tree so LLM consumers can
// navigate it without guessing.
const OutputLayoutContract = `# onexport Output Layout

Every export writes one notebook into the collection directory:

` + "```" + `
<root>/_<collection>/<notebook-slug>/
    notebook.xml              verbatim copy of the hierarchy markup
    <section-slug>/
        <page-slug>.yaml      page header
        <page-slug>.xml       page body, only when the host supplied one
` + "```" + `

## Page header

` + "```" + `yaml
---
ID: '{…page id…}'
name: Human readable page title
slug: human-readable-page-title
---
` + "```" + `

## Rules

1. **Slugs** are lower-case letters and digits joined by single hyphens. Diacritics are folded
   (` + "`" + `Café` + "`" + ` becomes ` + "`" + `cafe` + "`" + `). A name with no usable characters becomes ` + "`" + `untitled` + "`" + `.
2. **Collisions**: when two pages in a section share a slug, later pages get ` + "`" + `-2` + "`" + `, ` + "`" + `-3` + "`" + `, …
   on the file name. The ` + "`" + `slug` + "`" + ` field keeps the plain slug.
3. **Ownership**: a page belongs to the section whose id appears at a fixed offset of the page id.
   Pages whose section cannot be found are reported as ` + "`" + `orphan_page` + "`" + ` failures and not written.
4. **Re-exports** overwrite files in place; running an export twice on the same markup produces
   byte-identical output.
5. Page bodies are opaque markup; they are copied, never interpreted.

## Tools

- ` + "`" + `export_notebook` + "`" + ` takes hierarchy markup and returns the run report.
- ` + "`" + `list_pages` + "`" + `, ` + "`" + `search_pages` + "`" + ` and ` + "`" + `read_page` + "`" + ` browse the catalogue of the last exports.
- ` + "`" + `list_exports` + "`" + ` shows recent runs with their written and failed counts.
`
