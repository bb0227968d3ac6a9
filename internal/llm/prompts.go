package llm

const extractPrompt = `You are a family-record extraction system. Analyze the following text and extract every person mentioned, plus the family relationships stated between them.

For each person, determine:
- display_name: the person's name as mentioned (required)
- surname: the family name, if stated or clearly implied by the display name
- location: the city, town, or village the person lives in, if mentioned
- gender: "male" or "female", omit when unclear
- age: age in years as a number, omit when unknown
- occupation: job or role, if mentioned
- is_speaker: true only for the person who is speaking or narrating
- raw_mentions: the exact phrases from the text that mention this person

For each relationship between two extracted persons:
- person_a: the display_name of the first person
- person_b: the display_name of the second person
- term: the relationship word as it appears in the text (e.g. "wife", "son", "brother")

Both person_a and person_b must exactly match a display_name in persons.
Also set speaker_name to the display_name of the speaker, when one is identifiable.

Respond ONLY with a JSON object. No markdown, no explanation. Example:
{"persons":[{"display_name":"John Smith","surname":"Smith","location":"Seattle","is_speaker":true,"raw_mentions":["I'm John Smith, calling from Seattle"]},{"display_name":"Mary Smith","raw_mentions":["my wife Mary"]}],"relationships":[{"person_a":"John Smith","person_b":"Mary Smith","term":"wife"}],"speaker_name":"John Smith"}

If no persons can be extracted, respond with: {"persons":[],"relationships":[]}

Text:
%s`
