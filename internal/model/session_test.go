package model

import "testing"

func TestRoleCapabilities(t *testing.T) {
	if RoleCustomer.IsAgent() || RoleCustomer.CanViewDashboard() {
		t.Fatal("customer must not have agent capabilities")
	}
	if !RoleCustomer.CanStartChat() {
		t.Fatal("customer should be able to start a chat")
	}
	if !RoleAgent.IsAgent() || !RoleAgent.CanViewDashboard() {
		t.Fatal("agent should have dashboard capability")
	}
	if RoleAgent.CanStartChat() {
		t.Fatal("agent should not start chats")
	}
	if Role(0).Valid() || Role(0).Label() != "" {
		t.Fatal("zero role must be invalid")
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"cliente":   RoleCustomer,
		"customer":  RoleCustomer,
		"prestador": RoleAgent,
		"agent":     RoleAgent,
	}
	for in, want := range cases {
		got, ok := ParseRole(in)
		if !ok || got != want {
			t.Fatalf("ParseRole(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseRole("prestador_dashboard"); ok {
		t.Fatal("unexpected role for prestador_dashboard")
	}
}

func TestIdentityIsSelf(t *testing.T) {
	customer := Identity{Role: RoleCustomer, DisplayName: "Ana"}
	if !customer.IsSelf("cliente") {
		t.Fatal("role label should render as self")
	}
	if !customer.IsSelf("Ana") {
		t.Fatal("display name should render as self")
	}
	if customer.IsSelf("prestador") || customer.IsSelf("") {
		t.Fatal("agent label must render as other")
	}

	agent := Identity{Role: RoleAgent, DisplayName: AgentDisplayName}
	if !agent.IsSelf("prestador") || agent.IsSelf("cliente") {
		t.Fatal("agent self detection mismatch")
	}
}
