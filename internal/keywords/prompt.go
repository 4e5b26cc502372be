package keywords

// ExtractionPrompt is the system prompt sent with every keyword batch.
const ExtractionPrompt = `You pick stock-footage search terms for spoken video segments.

You receive a JSON array of transcript segments. Each element has "i" (the segment position) and "t" (the spoken text).

For each segment that describes something that can be shown visually, return one short search keyword of one to three words, in English, suitable for a stock video search (e.g. "city skyline", "running shoes", "ocean waves").

Rules:

- Copy "i" exactly from the input. Never invent positions.
- At most one entry per segment. Skip segments with nothing visual (greetings, filler, abstract talk).
- "c" is your confidence from 0.0 to 1.0 that footage of the keyword would illustrate the segment.

Respond ONLY with JSON like: {"broll": [{"k": "city skyline", "i": 0, "c": 0.8}]}`
