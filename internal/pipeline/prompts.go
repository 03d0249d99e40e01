package pipeline

// Directive is the system message every conversation starts with.
const Directive = `You are LLM-OS, a capable assistant with access to live internet search.
Before answering, decide whether the request needs fresh information from the web.
When search results are provided, answer only from those results and say so plainly.
Use the earlier turns of this conversation whenever they are relevant to the request.
If a request is ambiguous, ask a clarifying question instead of guessing.
Never use phrases such as "based on my knowledge", "depending on the information" or "based on the provided data".`

// EngineFallback is shown when the completion engine cannot produce an answer.
const EngineFallback = "I'm sorry, but I'm unable to respond at the moment."

// SearchFallback is shown when a search-augmented turn could not fetch results.
const SearchFallback = "I'm sorry, but web search is unavailable right now, so I can't look that up. Try again later or turn web search off."

// DateTimeLayout is how the current time is written into the optimizer prompt
const DateTimeLayout = "2006-01-02 15:04:05"

const optimizeTemplate = `Rewrite the user query below as a single internet search question.
Use the conversation history to resolve references and the current date and time to make the question date-aware.
Reply with the final question only and nothing else.

User query: '%s'
Conversation history: '%s'
Current date and time: '%s'`

const synthesizeTemplate = `Find the relevant answer to '%s' using these search results:

%s

Chat history:
%s

Answer '%s'`
