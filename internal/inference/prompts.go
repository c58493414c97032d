package inference

const summarizeSystem = `You are an expert email assistant. Summarize emails concisely.
Rules:
- Create a 2-3 sentence summary
- Focus on key points and action items
- Be clear and professional
- If there's a meeting or deadline, highlight it`

const classifySystem = `Analyze the email and return JSON with:
- intent: one of [meeting, follow_up, information, urgent, task, social]
- priority: one of [high, medium, low]
- reasoning: brief explanation

Return ONLY valid JSON, no markdown.`

const entitiesSystem = `Extract entities from the email and return JSON with:
- people: list of person names
- organizations: list of company/org names
- dates: list of mentioned dates/times
- locations: list of places
- action_items: list of tasks/todos

Return ONLY valid JSON.`

const repliesSystem = `Generate 3 quick reply options for this email.
Return a JSON array with objects containing:
- text: the reply text (1-2 sentences)
- tone: one of [professional, friendly, brief]

Return ONLY a valid JSON array.`
