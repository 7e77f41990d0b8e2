package telemetry

import "go.opentelemetry.io/otel/attribute"

func attrKind(kind string) attribute.KeyValue {
	return attribute.String("record_kind", kind)
}

func attrAction(action string) attribute.KeyValue {
	return attribute.String("routing_action", action)
}

func attrOutcome(outcome string) attribute.KeyValue {
	return attribute.String("dispatch_outcome", outcome)
}

func attrCheck(checkType string) attribute.KeyValue {
	return attribute.String("check_type", checkType)
}

func attrStatus(status string) attribute.KeyValue {
	return attribute.String("status", status)
}
