package queue

// TypeWebhookDeliver carries a webhook.Delivery as JSON.
const TypeWebhookDeliver = "webhook:deliver"
