package mcpserver

// FrontMatterContract describes the front-matter conventions that LLM
// consumers should follow when writing site content.
const FrontMatterContract = `# Quire Front-matter Contract

Every content file (.md, .markdown, .html) MAY start with a YAML front-matter
block. Files without one are registered with derived values.

## Structure

` + "```" + `markdown
---
layout: post                  # OPTIONAL – post or page; other values are kept verbatim
title: Enum vs Booleans       # OPTIONAL – groups revisions; falls back to the permalink
permalink: /java/enum-vs-bool # OPTIONAL – derived from the file path when absent
published: false              # OPTIONAL – false marks the document as a draft
---

Body text in Markdown.
` + "```" + `

## Rules

1. **Delimiters.** The first line must be exactly ` + "```" + `---` + "```" + `; the block ends at the
   next line that is exactly ` + "```" + `---` + "```" + `. An unclosed block makes the file malformed.
2. **Values are scalars.** ` + "`" + `layout` + "`" + `, ` + "`" + `title` + "`" + ` and ` + "`" + `permalink` + "`" + ` must be plain strings.
   Other keys are preserved as text.
3. **Permalinks** are site paths. A leading slash is added, trailing slashes, query
   strings, fragments and ` + "`" + `.html` + "`" + ` suffixes are ignored when comparing.
4. **One published document per permalink.** A second published document with the
   same permalink is a duplicate and fails the check.
5. **Drafts** live under ` + "`" + `_drafts/` + "`" + ` or set ` + "`" + `published: false` + "`" + `. A draft and a published
   document with the same title form a revision; the published one is canonical.
   Two published documents with the same title are ambiguous and fail the check.
6. **Derived permalinks.** Without a ` + "`" + `permalink` + "`" + ` key, ` + "`" + `_posts/2019-03-01-hello.md` + "`" + `
   becomes ` + "`" + `/hello` + "`" + ` and ` + "`" + `docs/index.md` + "`" + ` becomes ` + "`" + `/docs` + "`" + `.

## Links

- Internal links are absolute site paths: ` + "`" + `[text](/java/useful-classes)` + "`" + `.
- A link is broken when no published document has the target permalink. Links to drafts
  are broken.
- ` + "`" + `{{ site.baseurl }}` + "`" + ` prefixes are stripped before checking.
- Links to assets (images, css, js, pdf, ...), external URLs and relative paths are
  not checked.
- Run the ` + "`" + `validate_content` + "`" + ` tool before writing a file.
`
