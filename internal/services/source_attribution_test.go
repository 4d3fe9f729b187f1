package services

import (
	"reflect"
	"testing"
)

func TestSourceCollector_OrderAndDedup(t *testing.T) {
	c := newSourceCollector()
	c.Add("https://www.partselect.com/PS123.htm")
	c.Add("https://www.partselect.com/Models/WDT780SAEM1/")
	c.Add("https://www.partselect.com/PS123.htm")
	c.Add("")

	want := []string{
		"https://www.partselect.com/PS123.htm",
		"https://www.partselect.com/Models/WDT780SAEM1/",
	}
	if !reflect.DeepEqual(c.URLs(), want) {
		t.Errorf("URLs() = %v, want %v", c.URLs(), want)
	}
}

func TestSourceCollector_FromObjectResult(t *testing.T) {
	c := newSourceCollector()
	c.CollectFromResult(`{"found":true,"part_number":"PS123","url":"https://www.partselect.com/PS123.htm"}`)

	if len(c.URLs()) != 1 || c.URLs()[0] != "https://www.partselect.com/PS123.htm" {
		t.Errorf("Expected the url field to be collected, got %v", c.URLs())
	}
}

func TestSourceCollector_FromArrayResult(t *testing.T) {
	c := newSourceCollector()
	c.CollectFromResult(`[{"url":"https://a.example/1"},{"url":"https://a.example/2"},{"name":"no url"}]`)

	want := []string{"https://a.example/1", "https://a.example/2"}
	if !reflect.DeepEqual(c.URLs(), want) {
		t.Errorf("URLs() = %v, want %v", c.URLs(), want)
	}
}

func TestSourceCollector_IgnoresNonJSON(t *testing.T) {
	c := newSourceCollector()
	c.CollectFromResult("Tool error: timeout")
	c.CollectFromResult(`{"found":false,"part_number":"PS999"}`)

	if len(c.URLs()) != 0 {
		t.Errorf("Expected no URLs, got %v", c.URLs())
	}
}
