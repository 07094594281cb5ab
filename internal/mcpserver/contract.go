package mcpserver

// PostFormatContract describes the source format of a post, for LLM
// clients that draft posts.
const PostFormatContract = `# Post Format Contract

Posts are Markdown files under ` + "`_posts/`" + `, named ` + "`YYYY-MM-DD-slug.md`" + `.
Unfinished posts live in ` + "`_drafts/slug.md`" + ` and are only built with drafts enabled.

## Front matter

` + "```" + `yaml
---
layout: post                      # REQUIRED in practice; must name a file in _layouts/
title: "Move semantics, explained" # REQUIRED
date: 2024-05-01 09:30:00 +0200   # OPTIONAL; overrides the date in the file name
tags: [c++, performance]          # OPTIONAL; list or single string
categories: [language]            # OPTIONAL; used by :categories in permalinks
permalink: /move-semantics/       # OPTIONAL; overrides the site permalink pattern
excerpt: One-line summary         # OPTIONAL; otherwise text before <!--more-->
uuid: 6f0c...                     # OPTIONAL; stable Atom entry id
last_modified_at: 2024-06-01      # OPTIONAL; Atom <updated>
published: false                  # OPTIONAL; false skips the post
---
` + "```" + `

## Body

1. Standard Markdown with GitHub extensions (tables, task lists, strikethrough).
2. Fenced code blocks name their language (` + "```cpp" + `) for highlighting.
3. Footnotes use ` + "`[^1]`" + ` references and ` + "`[^1]: text`" + ` definitions. They are
   removed from excerpts.
4. Put ` + "`<!--more-->`" + ` after the opening paragraph to choose the excerpt.
5. Images live under ` + "`assets/images/`" + ` and are referenced with an absolute path:
   ` + "`![alt](/assets/images/name.png)`" + `. Always write alt text.
6. Raw HTML is allowed (figures, embeds). Template syntax is not evaluated in Markdown.

## Tools

- ` + "`create_post`" + ` writes a new post with this front matter and a fresh uuid.
- ` + "`upload_image`" + ` stores an image and returns the Markdown to embed it.
- ` + "`image_size`" + ` and ` + "`reading_time`" + ` expose the same values layouts use.
`
