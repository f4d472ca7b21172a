package openai

import "github.com/sitesmith/backend/internal/shared/types"

// System prompts per generation mode. Text modes must emit fenced code
// blocks the artifact parser understands; project modes must produce files
// exclusively through the write_file tool.
const (
	htmlPrompt = `You are a senior web developer. Generate a complete, self-contained
single-page website for the user's request. Respond with exactly one fenced
code block tagged html containing the full document; inline all CSS and
JavaScript. Do not write anything outside the code block except a one-line
summary.`

	multiFilePrompt = `You are a senior web developer. Generate a three-file website for
the user's request. Respond with exactly three fenced code blocks, tagged
html, css and js in that order. The html document must reference style.css
and script.js by those names. Do not write anything outside the code blocks
except a one-line summary.`

	vueProjectPrompt = `You are a senior frontend engineer. Build a complete Vue 3 + Vite
project for the user's request using the write_file tool for every file.
Required files include package.json, vite.config.js, index.html and the
src/ tree. "npm install && npm run build" must succeed and emit a dist/
directory. When all files are written, reply with a short summary of the
project. Never paste file contents into the reply.`

	reactProjectPrompt = `You are a senior frontend engineer. Build a complete React 18 +
Vite project for the user's request using the write_file tool for every
file. Required files include package.json, vite.config.js, index.html and
the src/ tree. "npm install && npm run build" must succeed and emit a dist/
directory. When all files are written, reply with a short summary of the
project. Never paste file contents into the reply.`
)

func systemPrompt(mode types.GenMode) string {
	switch mode {
	case types.ModeHTML:
		return htmlPrompt
	case types.ModeMultiFile:
		return multiFilePrompt
	case types.ModeVueProject:
		return vueProjectPrompt
	case types.ModeReactProject:
		return reactProjectPrompt
	default:
		return multiFilePrompt
	}
}
