package gateway

import (
	"bytes"
	"fmt"
	"html"
	"text/template"
)

type composeVAppData struct {
	Name          string
	Description   string
	CatalogueName string
	TemplateName  string
}

var composeVAppTemplate = template.Must(template.New("composeVApp").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<ComposeVAppParams xmlns="http://www.vmware.com/vcloud/v1.5" name="{{.Name}}">
	<Description>{{.Description}}</Description>
	<SourcedItem>
		<Source type="application/vnd.vmware.vcloud.vAppTemplate+xml" name="{{.TemplateName}}"/>
	</SourcedItem>
	<AllEULAsAccepted>true</AllEULAsAccepted>
</ComposeVAppParams>`))

func renderComposeVApp(data composeVAppData) ([]byte, error) {
	var buf bytes.Buffer
	if err := composeVAppTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("gateway: render composeVApp: %w", err)
	}
	return buf.Bytes(), nil
}

var guestCustomizationTemplate = template.Must(template.New("guestCustomization").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<GuestCustomizationSection xmlns="http://www.vmware.com/vcloud/v1.5">
	<Enabled>true</Enabled>
	<CustomizationScript>{{.}}</CustomizationScript>
</GuestCustomizationSection>`))

func renderGuestCustomization(script string) ([]byte, error) {
	var buf bytes.Buffer
	if err := guestCustomizationTemplate.Execute(&buf, html.EscapeString(script)); err != nil {
		return nil, fmt.Errorf("gateway: render guestCustomizationSection: %w", err)
	}
	return buf.Bytes(), nil
}

var deployTemplate = template.Must(template.New("deploy").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<DeployVAppParams xmlns="http://www.vmware.com/vcloud/v1.5" powerOn="{{.}}"/>`))

func renderDeploy(powerOn bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := deployTemplate.Execute(&buf, powerOn); err != nil {
		return nil, fmt.Errorf("gateway: render deployVAppParams: %w", err)
	}
	return buf.Bytes(), nil
}

type natRuleData struct {
	Internal string
	External string
}

var natRuleTemplate = template.Must(template.New("natRule").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<EdgeGatewayServiceConfiguration xmlns="http://www.vmware.com/vcloud/v1.5">
	<NatService>
		<IsEnabled>true</IsEnabled>
		<NatRule>
			<RuleType>DNAT</RuleType>
			<GatewayNatRule>
				<Interface>external</Interface>
				<OriginalIp>{{.External}}</OriginalIp>
				<TranslatedIp>{{.Internal}}</TranslatedIp>
			</GatewayNatRule>
		</NatRule>
		<NatRule>
			<RuleType>SNAT</RuleType>
			<GatewayNatRule>
				<Interface>internal</Interface>
				<OriginalIp>{{.Internal}}</OriginalIp>
				<TranslatedIp>{{.External}}</TranslatedIp>
			</GatewayNatRule>
		</NatRule>
	</NatService>
</EdgeGatewayServiceConfiguration>`))

func renderNATRule(data natRuleData) ([]byte, error) {
	var buf bytes.Buffer
	if err := natRuleTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("gateway: render NAT rule: %w", err)
	}
	return buf.Bytes(), nil
}

type firewallRuleData struct {
	External string
}

var firewallRuleTemplate = template.Must(template.New("firewallRule").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<EdgeGatewayServiceConfiguration xmlns="http://www.vmware.com/vcloud/v1.5">
	<FirewallService>
		<IsEnabled>true</IsEnabled>
		<FirewallRule>
			<IsEnabled>true</IsEnabled>
			<Policy>allow</Policy>
			<Protocols><Any>true</Any></Protocols>
			<DestinationIp>{{.External}}</DestinationIp>
		</FirewallRule>
	</FirewallService>
</EdgeGatewayServiceConfiguration>`))

func renderFirewallRule(data firewallRuleData) ([]byte, error) {
	var buf bytes.Buffer
	if err := firewallRuleTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("gateway: render firewall rule: %w", err)
	}
	return buf.Bytes(), nil
}
